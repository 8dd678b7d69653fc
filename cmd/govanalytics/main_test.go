package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNoArgsIsValidationError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr)
	assert.Equal(t, exitValidation, code)
}

func TestRunUnknownCommandIsValidationError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"bogus"}, &stdout, &stderr)
	assert.Equal(t, exitValidation, code)
}

func TestRunHelpSucceeds(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"help"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "Usage: govanalytics")
}

func TestRunSimulateProducesSimulatedSnapshot(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"simulate", "power-law", "--holders", "30"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), `"simulated"`)
}

func TestRunSimulateRejectsUnknownProfile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"simulate", "not-a-profile"}, &stdout, &stderr)
	assert.Equal(t, exitValidation, code)
}

func TestRunAnalyzeRejectsMissingProtocolArg(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"analyze"}, &stdout, &stderr)
	assert.Equal(t, exitValidation, code)
}

func TestRunCompareRequiresAtLeastTwoProtocols(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"compare", "only-one"}, &stdout, &stderr)
	assert.Equal(t, exitValidation, code)
}

func TestRunSeriesRequiresMetricFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"series", "proto"}, &stdout, &stderr)
	assert.Equal(t, exitValidation, code)
}
