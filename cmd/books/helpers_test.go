package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "1200.50 USD", formatMoney(decimal.RequireFromString("1200.5"), "usd"))
	assert.Equal(t, "-3.00", formatMoney(decimal.NewFromInt(-3), ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Everyd…", truncate("Everyday Checking", 7))
	assert.Equal(t, "É", truncate("Épargne", 1))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", formatFileSize(512))
	assert.Equal(t, "1.5 KB", formatFileSize(1536))
	assert.Equal(t, "2.0 MB", formatFileSize(2*1024*1024))
}

func TestExpandFiles(t *testing.T) {
	_, err := expandFiles([]string{"/does/not/exist/*.qfx"})
	assert.Error(t, err)
}
