// ABOUTME: Tests for the mock ECR image source.
// ABOUTME: Checks URI parsing, registry matching, and that counts agree with findings.

package mock

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestMockECRSource_Name(t *testing.T) {
	assert.Equal(t, "mock-ecr", NewMockECRSource(quietLogger()).Name())
}

func TestMockECRSource_ParseImageURI(t *testing.T) {
	source := NewMockECRSource(quietLogger())

	repo, tag, err := source.ParseImageURI("123456789012.dkr.ecr.us-east-1.amazonaws.com/team/web-frontend:v2.1.0")
	require.NoError(t, err)
	assert.Equal(t, "team/web-frontend", repo)
	assert.Equal(t, "v2.1.0", tag)

	_, _, err = source.ParseImageURI("nginx")
	assert.Error(t, err)
	_, _, err = source.ParseImageURI("123456789012.dkr.ecr.us-east-1.amazonaws.com/nginx")
	assert.Error(t, err)
}

func TestMockECRSource_IsRegistryImage(t *testing.T) {
	source := NewMockECRSource(quietLogger())
	assert.True(t, source.IsRegistryImage("123456789012.dkr.ecr.us-east-1.amazonaws.com/api:v1"))
	assert.False(t, source.IsRegistryImage("docker.io/library/nginx:1.25"))
}

func TestMockECRSource_GetImageVulnerabilities(t *testing.T) {
	source := NewMockECRSource(quietLogger())

	tests := []struct {
		uri          string
		wantCritical int
		wantTotal    int
	}{
		{uri: "123456789012.dkr.ecr.us-east-1.amazonaws.com/nginx-proxy:1.25", wantCritical: 1, wantTotal: 3},
		{uri: "123456789012.dkr.ecr.us-east-1.amazonaws.com/orders-api:v1.4.2", wantCritical: 0, wantTotal: 3},
		{uri: "123456789012.dkr.ecr.us-east-1.amazonaws.com/batch-worker:v1", wantCritical: 0, wantTotal: 1},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			vuln, err := source.GetImageVulnerabilities(context.Background(), tt.uri)
			require.NoError(t, err)

			assert.Equal(t, tt.uri, vuln.ImageURI)
			assert.Equal(t, "COMPLETE", vuln.ScanStatus)
			assert.NotNil(t, vuln.LastScanTime)
			assert.Equal(t, tt.wantCritical, vuln.Vulnerabilities["CRITICAL"])
			assert.Equal(t, tt.wantTotal, vuln.TotalCount)

			sum := 0
			for _, n := range vuln.Vulnerabilities {
				sum += n
			}
			assert.Equal(t, vuln.TotalCount, sum)
			assert.Len(t, vuln.Findings, vuln.TotalCount)
		})
	}

	_, err := source.GetImageVulnerabilities(context.Background(), "bad")
	assert.Error(t, err)
}
