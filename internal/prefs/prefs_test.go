package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore は常にエラーを返す保存先。
type failingStore struct{}

func (failingStore) Get(string) (string, bool, error) { return "", false, errors.New("読み込み不可") }
func (failingStore) Set(string, string) error         { return errors.New("書き込み不可") }

func TestPreferences_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value *string
		want  bool
	}{
		{name: "値が無い場合は有効", value: nil, want: true},
		{name: "trueは有効", value: ptr("true"), want: true},
		{name: "falseは無効", value: ptr("false"), want: false},
		{name: "前後の空白は無視", value: ptr(" false "), want: false},
		{name: "解釈できない値は有効", value: ptr("nope"), want: true},
		{name: "空文字は有効", value: ptr(""), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			initial := map[string]string{}
			if tt.value != nil {
				initial[KeySoundEnabled] = *tt.value
				initial[KeyDesktopEnabled] = *tt.value
			}
			p := New(NewMemoryStore(initial))
			assert.Equal(t, tt.want, p.SoundEnabled())
			assert.Equal(t, tt.want, p.DesktopEnabled())
		})
	}

	t.Run("保存先のエラー時は有効として扱う", func(t *testing.T) {
		t.Parallel()
		p := New(failingStore{})
		assert.True(t, p.SoundEnabled())
		assert.True(t, p.DesktopEnabled())
		assert.Equal(t, PermissionDefault, p.Permission())
	})
}

func TestPreferences_ReadFresh(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	p := New(store)
	require.True(t, p.SoundEnabled())

	require.NoError(t, p.SetSoundEnabled(false))
	assert.False(t, p.SoundEnabled())

	// 保存先を直接書き換えても次の読み出しで反映される
	require.NoError(t, store.Set(KeySoundEnabled, "true"))
	assert.True(t, p.SoundEnabled())
}

func TestPreferences_Permission(t *testing.T) {
	t.Parallel()

	p := New(NewMemoryStore(nil))
	assert.Equal(t, PermissionDefault, p.Permission())

	require.NoError(t, p.SetPermission(PermissionGranted))
	assert.Equal(t, PermissionGranted, p.Permission())

	require.NoError(t, p.SetPermission(PermissionDenied))
	assert.Equal(t, PermissionDenied, p.Permission())

	assert.Equal(t, PermissionDefault, ParsePermission("maybe"))
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	t.Run("ファイルが無い場合は値なしとして扱う", func(t *testing.T) {
		t.Parallel()
		fs := NewFileStore(filepath.Join(t.TempDir(), "missing.yaml"))
		_, ok, err := fs.Get(KeySoundEnabled)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("保存した値を読み出せてディレクトリも作成されること", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "preferences.yaml")
		p := New(NewFileStore(path))

		require.NoError(t, p.SetDesktopEnabled(false))
		require.NoError(t, p.SetPermission(PermissionGranted))

		assert.False(t, p.DesktopEnabled())
		assert.True(t, p.SoundEnabled())
		assert.Equal(t, PermissionGranted, p.Permission())
		assert.FileExists(t, path)
	})

	t.Run("YAMLの真偽値リテラルも文字列として読めること", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "preferences.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sound_enabled: false\ndesktop_notifications_enabled: \"true\"\n"), 0o600))

		p := New(NewFileStore(path))
		assert.False(t, p.SoundEnabled())
		assert.True(t, p.DesktopEnabled())
	})

	t.Run("外部からの書き換えが次の読み出しで反映されること", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "preferences.yaml")
		p := New(NewFileStore(path))
		require.NoError(t, p.SetSoundEnabled(true))

		require.NoError(t, os.WriteFile(path, []byte("sound_enabled: \"false\"\n"), 0o600))
		assert.False(t, p.SoundEnabled())
	})

	t.Run("壊れたYAMLは読み込みエラーになり、フラグは有効扱いになること", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "preferences.yaml")
		require.NoError(t, os.WriteFile(path, []byte("[broken\n"), 0o600))

		store := NewFileStore(path)
		_, _, err := store.Get(KeySoundEnabled)
		require.Error(t, err)
		assert.True(t, New(store).SoundEnabled())
	})
}

func ptr(s string) *string { return &s }
