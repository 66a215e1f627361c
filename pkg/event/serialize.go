package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeNotification はプッシュチャネルで通知レコードを運ぶメッセージの種類。
const TypeNotification = "notification"

// ErrInvalidRecord はデコードした通知レコードの形が不正な場合のエラー。
var ErrInvalidRecord = errors.New("通知レコードの形式が不正")

// Envelope はプッシュチャネルで送受信するメッセージ。
// {"type":"notification","data":{...}} の形をとる。
type Envelope struct {
	// Type はメッセージの種類。
	Type string `json:"type"`
	// Data はメッセージ固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// DecodeRecord はJSONを通知レコードにデシリアライズし、形を検証する。
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("通知レコードのデシリアライズに失敗: %w", err)
	}
	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DecodeEnvelope は封筒形式のJSONから通知レコードを取り出す。
func DecodeEnvelope(data []byte) (Record, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, fmt.Errorf("封筒のデシリアライズに失敗: %w", err)
	}
	if env.Type != TypeNotification {
		return Record{}, fmt.Errorf("%w: type=%q", ErrInvalidRecord, env.Type)
	}
	return DecodeRecord(env.Data)
}

func (r Record) validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id=%d", ErrInvalidRecord, r.ID)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRecord, ErrUnknownKind, r.Type)
	}
	return nil
}
