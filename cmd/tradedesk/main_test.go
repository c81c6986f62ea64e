package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradedesk/tradedesk/internal/app"
	_ "github.com/tradedesk/tradedesk/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
