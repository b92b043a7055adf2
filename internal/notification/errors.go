package notification

import "errors"

// 通知サービスのエラー分類。ハンドラはerrors.Isで判定してHTTPステータスに変換する。
var (
	// ErrNotFound は通知が存在しないか、呼び出し元の所有ではないことを表す。
	ErrNotFound = errors.New("通知が見つかりません")
	// ErrValidation はページングパラメータやリクエスト内容が不正であることを表す。
	ErrValidation = errors.New("リクエストが不正です")
	// ErrUnauthorized は受信者を特定できないことを表す。
	ErrUnauthorized = errors.New("ユーザーIDが取得できません")
	// ErrTransientStorage はストレージが一時的に利用できないことを表す。
	ErrTransientStorage = errors.New("ストレージが一時的に利用できません")
)
