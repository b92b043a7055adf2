package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nao1215/notifyhub/pkg/notice"
)

// openTestCache はテスト用のローカルキャッシュを一時ディレクトリに作成する。
func openTestCache(t *testing.T) *LocalCache {
	t.Helper()

	cache, err := OpenLocalCache(t.Context(), filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("ローカルキャッシュの作成に失敗: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestScope(t *testing.T) {
	t.Parallel()

	if got := Scope(""); got != AnonymousScope {
		t.Errorf("Scope(\"\") = %q, want %q", got, AnonymousScope)
	}
	if got := Scope("user-1"); got != "user-1" {
		t.Errorf("Scope(\"user-1\") = %q, want %q", got, "user-1")
	}
}

func TestLocalCache(t *testing.T) {
	t.Parallel()

	t.Run("正常系: スコープごとに独立して保存される", func(t *testing.T) {
		t.Parallel()
		cache := openTestCache(t)

		mine := Snapshot{
			Records: []notice.Record{
				{ID: "a", RecipientID: "user-1", Type: notice.TypeGroupInvite, Data: notice.Text("招待")},
				{ID: "b", RecipientID: "user-1", Type: notice.TypeReportStatus, Data: notice.Structured(map[string]any{"status": "open"}), Read: true},
			},
			NextCursor: "cursor-b",
			HasMore:    true,
		}
		if err := cache.Save(t.Context(), "user-1", mine); err != nil {
			t.Fatalf("保存に失敗: %v", err)
		}
		if err := cache.Save(t.Context(), AnonymousScope, Snapshot{}); err != nil {
			t.Fatalf("保存に失敗: %v", err)
		}

		got, err := cache.Load(t.Context(), "user-1")
		if err != nil {
			t.Fatalf("読み込みに失敗: %v", err)
		}
		if len(got.Records) != 2 || got.Records[0].ID != "a" || !got.Records[1].Read {
			t.Errorf("読み込んだ通知が不正: %+v", got.Records)
		}
		if got.Records[1].Data.Fields()["status"] != "open" {
			t.Errorf("ペイロードが復元されていない: %+v", got.Records[1].Data)
		}
		if got.NextCursor != "cursor-b" || !got.HasMore || got.SavedAt.IsZero() {
			t.Errorf("スコープ情報が不正: %+v", got)
		}

		anon, err := cache.Load(t.Context(), AnonymousScope)
		if err != nil {
			t.Fatalf("読み込みに失敗: %v", err)
		}
		if len(anon.Records) != 0 {
			t.Errorf("他スコープの通知が混在している: %+v", anon.Records)
		}
	})

	t.Run("正常系: 保存は前回の内容を置き換える", func(t *testing.T) {
		t.Parallel()
		cache := openTestCache(t)

		first := Snapshot{Records: []notice.Record{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
		if err := cache.Save(t.Context(), "user-1", first); err != nil {
			t.Fatalf("保存に失敗: %v", err)
		}
		if err := cache.Save(t.Context(), "user-1", Snapshot{Records: []notice.Record{{ID: "c"}}}); err != nil {
			t.Fatalf("保存に失敗: %v", err)
		}

		got, err := cache.Load(t.Context(), "user-1")
		if err != nil {
			t.Fatalf("読み込みに失敗: %v", err)
		}
		if len(got.Records) != 1 || got.Records[0].ID != "c" {
			t.Errorf("置き換えられていない: %+v", got.Records)
		}

		if err := cache.Clear(t.Context(), "user-1"); err != nil {
			t.Fatalf("削除に失敗: %v", err)
		}
		got, err = cache.Load(t.Context(), "user-1")
		if err != nil {
			t.Fatalf("読み込みに失敗: %v", err)
		}
		if len(got.Records) != 0 || !got.SavedAt.IsZero() {
			t.Errorf("削除されていない: %+v", got)
		}
	})

	t.Run("正常系: ビューの既読化がキャッシュに書き込まれ次回の表示開始時に復元される", func(t *testing.T) {
		t.Parallel()
		cache := openTestCache(t)
		backend := newFakeBackend(3)

		feed := NewFeed(backend, WithLocalCache(cache, "user-1"))
		if err := feed.Load(t.Context()); err != nil {
			t.Fatalf("Loadに失敗: %v", err)
		}
		if err := feed.MarkRead("n-01"); err != nil {
			t.Fatalf("MarkReadに失敗: %v", err)
		}
		feed.Close()

		snap, err := cache.Load(t.Context(), "user-1")
		if err != nil {
			t.Fatalf("読み込みに失敗: %v", err)
		}
		if len(snap.Records) != 3 || !snap.Records[1].Read {
			t.Errorf("既読化が保存されていない: %+v", snap.Records)
		}

		// 取得が終わるまではキャッシュの内容が表示される
		restored := make(chan int, 1)
		var next *Feed
		backend.listHook = func(_ context.Context, _ int) error {
			restored <- len(next.Records())
			return nil
		}
		next = NewFeed(backend, WithLocalCache(cache, "user-1"))
		t.Cleanup(next.Close)
		if err := next.Load(t.Context()); err != nil {
			t.Fatalf("Loadに失敗: %v", err)
		}
		if got := <-restored; got != 3 {
			t.Errorf("キャッシュから復元された件数が不正: got %d, want 3", got)
		}
	})
}
