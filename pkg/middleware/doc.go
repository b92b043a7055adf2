// Package middleware は通知サービスのGin HTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークン（JWT）の発行と検証、パニックリカバリ、
// フロントエンドからのクロスオリジンアクセス許可を含む。
package middleware
