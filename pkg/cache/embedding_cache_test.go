package cache

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyIsDeterministic(t *testing.T) {
	k1 := Key("linktree-embed", "text-embedding-3-small", "hello world")
	k2 := Key("linktree-embed", "text-embedding-3-small", "hello world")
	assert.Equal(t, k1, k2)
}

func TestKeyFormat(t *testing.T) {
	digest := md5.Sum([]byte("hello world"))
	expected := "linktree-embed:text-embedding-3-small:" + hex.EncodeToString(digest[:])
	assert.Equal(t, expected, Key("linktree-embed", "text-embedding-3-small", "hello world"))
}

func TestKeyVariesByInput(t *testing.T) {
	base := Key("p", "m", "text")
	assert.NotEqual(t, base, Key("p", "m", "other text"))
	assert.NotEqual(t, base, Key("p", "other-model", "text"))
	assert.NotEqual(t, base, Key("other-prefix", "m", "text"))
}
