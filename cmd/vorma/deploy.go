package main

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/vorma-dev/vorma/internal/config"
	"github.com/vorma-dev/vorma/internal/deploy"
)

func deployCmd() *cobra.Command {
	var (
		bucket string
		prefix string
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Upload built assets to S3",
		Long: `Upload the build output directory to S3.

Bucket and prefix default to the deploy section of vorma.json; flags
override. Credentials come from the standard AWS environment.

Examples:
  vorma deploy
  vorma deploy --bucket my-assets --prefix public/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), bucket, prefix, dir)
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Target S3 bucket (default from vorma.json)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix within the bucket")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to upload (default: the build output)")

	return cmd
}

func runDeploy(ctx context.Context, bucket, prefix, dir string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if bucket == "" {
		bucket = cfg.Deploy.Bucket
	}
	if bucket == "" {
		return errors.New("no S3 bucket configured; set deploy.bucket or pass --bucket")
	}
	if prefix == "" {
		prefix = cfg.Deploy.Prefix
	}
	if dir == "" {
		dir = cfg.Build.Output
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Deploy.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Deploy.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	syncer := deploy.NewSyncer(s3.NewFromConfig(awsCfg), bucket, prefix)
	syncer.Logf = func(format string, args ...any) {
		fmt.Printf("  "+format+"\n", args...)
	}

	n, err := syncer.Sync(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Printf("\n  deployed %d files to s3://%s/%s\n", n, bucket, prefix)
	return nil
}
