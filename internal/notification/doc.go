// Package notification は通知サービスの内部実装を提供する。
//
// 受信者ごとの通知台帳（Ledger）、通知種別ごとの配信設定（PreferenceStore）、
// カーソルベースのページング、既読状態の遷移を扱う。通知の作成は
// 内部HTTP APIまたはRabbitMQ経由のNotificationRequestedイベントで受け付け、
// 配信設定で無効化された種別は何も作成せずに成功として扱う。
//
// 既読化は冪等で、既読レコードの一括削除は1文のDELETEで評価されるため
// 同時に行われた既読化と競合しても不変条件は崩れない。
package notification
