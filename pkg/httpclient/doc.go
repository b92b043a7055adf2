// Package httpclient は通知サービスのHTTP APIを呼び出すJSONクライアントを提供する。
//
// Bearerトークンや内部トークンなどのヘッダーをクライアント単位で設定し、
// 2xx以外の応答は StatusError として返す。
package httpclient
