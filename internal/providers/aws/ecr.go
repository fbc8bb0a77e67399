// ABOUTME: Amazon ECR image source for container images referenced from Terraform.
// ABOUTME: Turns ECR basic and enhanced (Inspector) scan findings into image vulnerability summaries.

package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
)

// ecrAPI is the subset of the ECR client we call
type ecrAPI interface {
	DescribeImageScanFindings(ctx context.Context, params *ecr.DescribeImageScanFindingsInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImageScanFindingsOutput, error)
}

// ECRSource resolves image vulnerability data from one ECR registry
type ECRSource struct {
	client    ecrAPI
	accountID string
	region    string
	logger    *logrus.Logger
}

// NewECRSource creates an ECR image source, assuming a cross-account role when needed
func NewECRSource(ctx context.Context, accountID, region string, logger *logrus.Logger) (*ECRSource, error) {
	cfg, err := LoadConfig(ctx, region, accountID, logger)
	if err != nil {
		return nil, err
	}
	return newECRSourceWithClient(ecr.NewFromConfig(cfg), accountID, region, logger), nil
}

func newECRSourceWithClient(client ecrAPI, accountID, region string, logger *logrus.Logger) *ECRSource {
	return &ECRSource{
		client:    client,
		accountID: accountID,
		region:    region,
		logger:    logger,
	}
}

func (e *ECRSource) Name() string {
	return "aws-ecr"
}

// IsRegistryImage reports whether the image lives in this source's registry
func (e *ECRSource) IsRegistryImage(imageURI string) bool {
	prefix := fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/", e.accountID, e.region)
	return strings.HasPrefix(imageURI, prefix)
}

// ParseImageURI splits account.dkr.ecr.region.amazonaws.com/repository:tag
func (e *ECRSource) ParseImageURI(imageURI string) (repository, tag string, err error) {
	return parseImageURI(imageURI)
}

func parseImageURI(imageURI string) (repository, tag string, err error) {
	slash := strings.Index(imageURI, "/")
	if slash < 0 || slash == len(imageURI)-1 {
		return "", "", fmt.Errorf("invalid image URI format: %s", imageURI)
	}

	repoWithTag := imageURI[slash+1:]
	repoParts := strings.Split(repoWithTag, ":")
	if len(repoParts) != 2 || repoParts[0] == "" || repoParts[1] == "" {
		return "", "", fmt.Errorf("invalid image URI format, missing tag: %s", imageURI)
	}

	return repoParts[0], repoParts[1], nil
}

// GetImageVulnerabilities fetches the latest scan findings for imageURI
func (e *ECRSource) GetImageVulnerabilities(ctx context.Context, imageURI string) (*types.ImageVulnerability, error) {
	repo, tag, err := e.ParseImageURI(imageURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image URI: %w", err)
	}

	logger := e.logger.WithFields(logrus.Fields{
		"image_uri":  imageURI,
		"repository": repo,
		"tag":        tag,
	})

	output, err := e.client.DescribeImageScanFindings(ctx, &ecr.DescribeImageScanFindingsInput{
		RepositoryName: aws.String(repo),
		ImageId:        &ecrtypes.ImageIdentifier{ImageTag: aws.String(tag)},
	})
	if err != nil {
		logger.WithError(err).Error("Failed to describe image scan findings")
		return nil, fmt.Errorf("failed to describe scan findings for %s: %w", imageURI, err)
	}

	result := &types.ImageVulnerability{
		ImageURI:        imageURI,
		Repository:      repo,
		Tag:             tag,
		Vulnerabilities: make(map[string]int),
	}

	if output.ImageScanStatus != nil {
		result.ScanStatus = string(output.ImageScanStatus.Status)
	}

	scan := output.ImageScanFindings
	if scan == nil {
		return result, nil
	}

	if scan.ImageScanCompletedAt != nil {
		completed := scan.ImageScanCompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		result.LastScanTime = &completed
	}

	for _, f := range scan.Findings {
		result.Findings = append(result.Findings, basicFinding(f))
	}
	for _, f := range scan.EnhancedFindings {
		if f.Severity == nil {
			continue
		}
		result.Findings = append(result.Findings, enhancedFinding(f))
	}

	for _, f := range result.Findings {
		result.Vulnerabilities[f.Severity]++
	}
	result.TotalCount = len(result.Findings)

	// Paged or truncated findings still come with full severity counts
	if result.TotalCount == 0 {
		for severity, count := range scan.FindingSeverityCounts {
			result.Vulnerabilities[string(severity)] = int(count)
			result.TotalCount += int(count)
		}
	}

	logger.WithFields(logrus.Fields{
		"total_vulnerabilities": result.TotalCount,
		"scan_status":           result.ScanStatus,
		"vulnerabilities":       result.Vulnerabilities,
	}).Info("Retrieved image vulnerability data")

	return result, nil
}

func basicFinding(f ecrtypes.ImageScanFinding) types.VulnerabilityFinding {
	return types.VulnerabilityFinding{
		Name:             aws.ToString(f.Name),
		Description:      aws.ToString(f.Description),
		Severity:         string(f.Severity),
		URI:              aws.ToString(f.Uri),
		ExploitAvailable: "unknown",
		FixAvailable:     "unknown",
	}
}

func enhancedFinding(f ecrtypes.EnhancedImageScanFinding) types.VulnerabilityFinding {
	finding := types.VulnerabilityFinding{
		Name:             aws.ToString(f.Title),
		Description:      aws.ToString(f.Description),
		Severity:         aws.ToString(f.Severity),
		Score:            f.Score,
		ExploitAvailable: "unknown",
		FixAvailable:     "unknown",
	}
	if f.ExploitAvailable != nil {
		finding.ExploitAvailable = *f.ExploitAvailable
	}
	if f.FixAvailable != nil {
		finding.FixAvailable = *f.FixAvailable
	}

	if details := f.PackageVulnerabilityDetails; details != nil {
		if details.VulnerabilityId != nil {
			finding.Name = *details.VulnerabilityId
		}
		if details.SourceUrl != nil {
			finding.URI = *details.SourceUrl
		}
		if len(details.VulnerablePackages) > 0 {
			pkg := details.VulnerablePackages[0]
			finding.PackageName = aws.ToString(pkg.Name)
			finding.PackageVersion = aws.ToString(pkg.Version)
			finding.FixVersion = aws.ToString(pkg.FixedInVersion)
		}
	}
	return finding
}
