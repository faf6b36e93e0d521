package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"jotter/internal/blobstore"
	"jotter/internal/config"
	"jotter/internal/server"
	"jotter/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the jotter API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			blobs, err := openBlobStore(cfg, logger)
			if err != nil {
				return err
			}

			srv, err := server.New(addr, st, st, blobs, logger, server.Options{
				MaxUploadBytes:    cfg.Attachments.MaxUploadBytes,
				AllowedMediaTypes: cfg.Attachments.AllowedMediaTypes,
				GCBatchSize:       cfg.Attachments.GCBatchSize,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}
}

func openBlobStore(cfg *config.Config, logger *slog.Logger) (blobstore.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		s3 := cfg.Attachments.S3
		logger.Info("using s3 blob store", "endpoint", s3.Endpoint, "bucket", s3.Bucket, "prefix", s3.Prefix)
		bs, err := blobstore.NewS3Store(blobstore.S3Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			UseSSL:    s3.UseSSL,
			Prefix:    s3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return bs, nil
	default:
		logger.Info("using local blob store", "root", cfg.Attachments.StorageRoot)
		bs, err := blobstore.NewLocalStore(cfg.Attachments.StorageRoot)
		if err != nil {
			return nil, err
		}
		return bs, nil
	}
}
