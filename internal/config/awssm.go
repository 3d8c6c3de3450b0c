package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// resolveAWSSecretsManager resolves an AWS Secrets Manager reference.
// Format: secret-name or full ARN.
func resolveAWSSecretsManager(ref string) (string, error) {
	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", ref, err)
	}

	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value (binary secrets not supported)", ref)
	}

	return *out.SecretString, nil
}

// ResolvePasswordRef resolves a password that may be supplied as a
// Secrets Manager ARN instead of a literal value, as serverless callers
// do. The secret is expected to be a JSON document with a PASSWORD key.
// Anything that is not an ARN is returned unchanged.
func ResolvePasswordRef(password string) (string, error) {
	if !strings.HasPrefix(password, "arn:") {
		return password, nil
	}

	raw, err := resolveAWSSecretsManager(password)
	if err != nil {
		return "", err
	}

	var doc map[string]string
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("parsing secret document: %w", err)
	}
	pw, ok := doc["PASSWORD"]
	if !ok {
		return "", fmt.Errorf("secret document has no PASSWORD key")
	}
	return pw, nil
}
