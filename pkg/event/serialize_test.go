package event

import (
	"errors"
	"testing"
)

// TestDecodeRecord はDecodeRecord関数を検証する。
func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	t.Run("正しい形のレコードをデコードできること", func(t *testing.T) {
		t.Parallel()

		rec, err := DecodeRecord([]byte(`{"id":7,"type":"task_created","message":"新規タスク","created_at":"2026-10-18T09:30:00Z","is_read":false}`))
		if err != nil {
			t.Fatalf("DecodeRecord()でエラーが発生: %v", err)
		}
		if rec.ID != 7 {
			t.Errorf("ID = %d, want 7", rec.ID)
		}
		if rec.Type != KindTaskCreated {
			t.Errorf("Type = %q, want %q", rec.Type, KindTaskCreated)
		}
		if rec.Message != "新規タスク" {
			t.Errorf("Message = %q, want %q", rec.Message, "新規タスク")
		}
	})

	t.Run("不正なJSONでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if _, err := DecodeRecord([]byte(`{invalid`)); err == nil {
			t.Fatal("DecodeRecord()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("IDが0の場合ErrInvalidRecordが返ること", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeRecord([]byte(`{"id":0,"type":"task_created","message":"x"}`))
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("未定義の種別でErrUnknownKindが返ること", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeRecord([]byte(`{"id":3,"type":"invoice_paid","message":"x"}`))
		if !errors.Is(err, ErrUnknownKind) {
			t.Errorf("err = %v, want ErrUnknownKind", err)
		}
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})
}

// TestDecodeEnvelope はDecodeEnvelope関数を検証する。
func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	t.Run("notification封筒からレコードを取り出せること", func(t *testing.T) {
		t.Parallel()

		rec, err := DecodeEnvelope([]byte(`{"type":"notification","data":{"id":12,"type":"technician_added","message":"技術者が追加されました"}}`))
		if err != nil {
			t.Fatalf("DecodeEnvelope()でエラーが発生: %v", err)
		}
		if rec.ID != 12 {
			t.Errorf("ID = %d, want 12", rec.ID)
		}
	})

	t.Run("notification以外の封筒は拒否されること", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeEnvelope([]byte(`{"type":"ping","data":{}}`))
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})
}
