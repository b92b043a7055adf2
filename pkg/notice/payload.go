package notice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// PayloadKind はペイロードの種類を表すタグ。
type PayloadKind string

const (
	// PayloadText は単純な文字列のペイロード。
	PayloadText PayloadKind = "text"
	// PayloadStructured はキーと値のマッピングを持つペイロード。
	PayloadStructured PayloadKind = "structured"
)

// ErrUnsupportedPayload は文字列でもオブジェクトでもないJSONを受け取ったときに返る。
var ErrUnsupportedPayload = errors.New("ペイロードは文字列またはオブジェクトである必要があります")

// Payload は通知の本文を表すタグ付きユニオン。
// JSONでは文字列またはオブジェクトとして表現される。ゼロ値は空のテキスト。
type Payload struct {
	kind   PayloadKind
	text   string
	fields map[string]any
}

// Text はテキストペイロードを生成する。
func Text(s string) Payload {
	return Payload{kind: PayloadText, text: s}
}

// Structured は構造化ペイロードを生成する。fieldsはコピーされる。
func Structured(fields map[string]any) Payload {
	return Payload{kind: PayloadStructured, fields: maps.Clone(fields)}
}

// Kind はペイロードの種類を返す。
func (p Payload) Kind() PayloadKind {
	if p.kind == "" {
		return PayloadText
	}
	return p.kind
}

// Text はテキストペイロードの文字列を返す。構造化ペイロードでは空文字。
func (p Payload) Text() string {
	return p.text
}

// Fields は構造化ペイロードのマッピングを返す。テキストペイロードではnil。
func (p Payload) Fields() map[string]any {
	return p.fields
}

// Render はペイロードを1行の表示用文字列に変換する。
// 構造化ペイロードは "message" キーがあればそれを、なければキー順の "key: value" を並べる。
func (p Payload) Render() string {
	switch p.Kind() {
	case PayloadStructured:
		if msg, ok := p.fields["message"].(string); ok {
			return msg
		}
		keys := slices.Sorted(maps.Keys(p.fields))
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, p.fields[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return p.text
	}
}

// MarshalJSON はペイロードをJSON文字列またはJSONオブジェクトに変換する。
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Kind() == PayloadStructured {
		if p.fields == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(p.fields)
	}
	return json.Marshal(p.text)
}

// UnmarshalJSON は先頭のトークンでペイロードの種類を判定して復元する。
func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = Text("")
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("テキストペイロードのデコードに失敗: %w", err)
		}
		*p = Text(s)
		return nil
	case '{':
		var fields map[string]any
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("構造化ペイロードのデコードに失敗: %w", err)
		}
		*p = Payload{kind: PayloadStructured, fields: fields}
		return nil
	default:
		return ErrUnsupportedPayload
	}
}
