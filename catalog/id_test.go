package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIdNormalizesCasePunctuationAndAccents(t *testing.T) {
	assert.Equal(t, Id("mrmime"), NewId("Mr. Mime"))
	assert.Equal(t, Id("mrmime"), NewId("mr mime"))
	assert.Equal(t, Id("farfetchd"), NewId("Farfetch'd"))
	assert.Equal(t, Id("dragonrage"), NewId("Dragon Rage"))
	assert.Equal(t, Id("flabebe"), NewId("Flabébé"))
}

func TestIdIsEmpty(t *testing.T) {
	assert.True(t, NewId("").IsEmpty())
	assert.True(t, NewId("   ").IsEmpty())
	assert.False(t, NewId("pikachu").IsEmpty())
}
