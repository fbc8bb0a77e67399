// ABOUTME: Shared AWS configuration loading for ECR and Bedrock clients.
// ABOUTME: Handles explicit role assumption and cross-account role discovery via STS.

package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/sirupsen/logrus"
)

// CrossAccountRoleName is assumed when the caller lives in a different account than the target
const CrossAccountRoleName = "TerraSentryReadOnlyRole"

// LoadConfig loads the default AWS config for region. AWS_IAM_ASSUME_ROLE_ARN wins over
// cross-account detection; targetAccountID may be empty to skip detection.
func LoadConfig(ctx context.Context, region, targetAccountID string, logger *logrus.Logger) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if assumeRoleARN := os.Getenv("AWS_IAM_ASSUME_ROLE_ARN"); assumeRoleARN != "" {
		logger.WithField("role_arn", assumeRoleARN).Info("Assuming role from AWS_IAM_ASSUME_ROLE_ARN environment variable")

		stsClient := sts.NewFromConfig(cfg.Copy())
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, assumeRoleARN))
		return cfg, nil
	}

	if targetAccountID == "" {
		return cfg, nil
	}

	stsClient := sts.NewFromConfig(cfg.Copy())
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		logger.WithError(err).Warn("Could not get caller identity, proceeding with default credentials")
		return cfg, nil
	}

	currentAccountID := aws.ToString(identity.Account)
	logger.WithFields(logrus.Fields{
		"current_account": currentAccountID,
		"target_account":  targetAccountID,
	}).Info("AWS identity information")

	if currentAccountID != targetAccountID {
		roleARN := CrossAccountRoleARN(targetAccountID)
		logger.WithField("role_arn", roleARN).Info("Assuming cross-account role")
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, roleARN))
	}

	return cfg, nil
}

func CrossAccountRoleARN(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, CrossAccountRoleName)
}
