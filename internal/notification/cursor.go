package notification

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor はページングの位置を表す。
// (CreatedAt, ID) の組で (created_at DESC, id DESC) の全順序上の位置が一意に決まる。
// IDが空のカーソルは「CreatedAtより厳密に古い」だけを条件にする。
type Cursor struct {
	// CreatedAt は直前のページ末尾のレコードの作成日時。
	CreatedAt time.Time
	// ID は直前のページ末尾のレコードのID。同時刻のレコードの境界に使う。
	ID string
}

// cursorOf はレコードの位置を指すカーソルを返す。
func cursorOf(createdAt time.Time, id string) *Cursor {
	return &Cursor{CreatedAt: createdAt, ID: id}
}

// Encode はカーソルをURLに埋め込める不透明な文字列に変換する。
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor はbeforeパラメータを解釈する。
// Encodeで生成した不透明なカーソルのほか、RFC3339形式のタイムスタンプも受け付ける。
// 空文字の場合はnilを返す。
func ParseCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	// タイムスタンプは ':' を含むためbase64url文字列と衝突しない
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &Cursor{CreatedAt: t}, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: カーソルの形式が不正です", ErrValidation)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: カーソルの形式が不正です", ErrValidation)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: カーソルの時刻が不正です", ErrValidation)
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}
