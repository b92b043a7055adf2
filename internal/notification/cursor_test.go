package notification

import (
	"errors"
	"testing"
	"time"
)

func TestParseCursor(t *testing.T) {
	t.Parallel()

	t.Run("正常系: Encodeした文字列を同じ位置に戻せる", func(t *testing.T) {
		t.Parallel()
		want := Cursor{CreatedAt: time.Date(2026, 5, 1, 9, 30, 0, 123456789, time.UTC), ID: "0b6f0c3e-id"}

		got, err := ParseCursor(want.Encode())
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("正常系: RFC3339のタイムスタンプはIDなしのカーソルになる", func(t *testing.T) {
		t.Parallel()

		got, err := ParseCursor("2026-05-01T09:30:00.5Z")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got.ID != "" {
			t.Errorf("IDが設定されている: %s", got.ID)
		}
		want := time.Date(2026, 5, 1, 9, 30, 0, 500000000, time.UTC)
		if !got.CreatedAt.Equal(want) {
			t.Errorf("got %v, want %v", got.CreatedAt, want)
		}
	})

	t.Run("正常系: 空文字はnil", func(t *testing.T) {
		t.Parallel()

		got, err := ParseCursor("")
		if err != nil || got != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", got, err)
		}
	})

	t.Run("異常系: 解釈できない文字列はErrValidation", func(t *testing.T) {
		t.Parallel()

		tests := []string{
			"not base64!",
			"bm8tc2VwYXJhdG9y",    // "no-separator"
			"YWJjOmlkLTE",         // "abc:id-1"
			"MTcwMDAwMDAwMDAwMDo", // "1700000000000:" (IDなし)
		}
		for _, in := range tests {
			if _, err := ParseCursor(in); !errors.Is(err, ErrValidation) {
				t.Errorf("%q: got %v, want ErrValidation", in, err)
			}
		}
	})
}
