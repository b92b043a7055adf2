// Package notice は通知サービスとクライアントが共有するデータモデルを提供する。
//
// 通知レコード、ペイロード（テキストまたは構造化データのタグ付きユニオン）、
// 通知設定、ページングされた一覧レスポンスのJSON表現を定義する。
package notice
