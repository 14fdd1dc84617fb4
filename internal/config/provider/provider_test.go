// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", TypeFile, false},
		{"file", TypeFile, false},
		{"consul", TypeConsul, false},
		{"etcd", TypeEtcd, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewDispatchesToFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("core:\n  port: 1\n"), 0o644))

	p, err := New(Config{Type: TypeFile, Path: path})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, TypeFile, p.Type())
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{Type: TypeFile})
	assert.Error(t, err)
}

func TestFileProviderLoadReadsBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := "core:\n  port: 42\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestFileProviderWatchErrorsAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("core:\n"), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Watch(context.Background())
	assert.Error(t, err)
}
