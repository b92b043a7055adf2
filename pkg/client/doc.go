// Package client は通知APIのクライアントと、通知を表示する2つのビューを提供する。
//
// Overlay は閉じるたびに既読通知を削除する一時的な表示、
// Feed は既読化のみを行うカーソルページングの一覧表示。
// どちらも既読化をローカルに先行して反映し、リモート呼び出しは非同期に行う。
// 失敗してもローカルの状態は戻さない。
//
// LocalCache は表示内容を受信者ごとにSQLiteへ保存し、次回の表示開始時に復元する。
package client
