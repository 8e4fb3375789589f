package main

import (
	"context"
	"path/filepath"

	"github.com/hupe1980/umapgo/blobstore"
	miniostore "github.com/hupe1980/umapgo/blobstore/minio"
	s3store "github.com/hupe1980/umapgo/blobstore/s3"
	"github.com/hupe1980/umapgo/matio"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

// openStore builds the projection cache store selected by cache.backend.
// Remote backends are fronted by the local cache directory.
func openStore(ctx context.Context, v *viper.Viper) (blobstore.Store, error) {
	local := blobstore.NewLocalStore(filepath.Clean(v.GetString("cache.dir")))
	prefix := v.GetString("cache.prefix")

	switch backend := v.GetString("cache.backend"); backend {
	case "local":
		return local, nil
	case "s3":
		bucket := v.GetString("cache.s3.bucket")
		if bucket == "" {
			return nil, errorf(CodeConfigValidateInvalidValue, "cache.s3.bucket is required for the s3 backend")
		}

		optFns := []func(o *s3store.Options){s3store.WithPrefix(prefix)}
		if region := v.GetString("cache.s3.region"); region != "" {
			optFns = append(optFns, s3store.WithRegion(region))
		}

		if endpoint := v.GetString("cache.s3.endpoint"); endpoint != "" {
			optFns = append(optFns, s3store.WithEndpoint(endpoint))
		}

		remote, err := s3store.New(ctx, bucket, optFns...)
		if err != nil {
			return nil, wrapf(err, CodeCLIStoreFailure, "creating s3 store")
		}

		return blobstore.NewTieredStore(local, remote), nil
	case "minio":
		endpoint := v.GetString("cache.minio.endpoint")
		bucket := v.GetString("cache.minio.bucket")
		if endpoint == "" || bucket == "" {
			return nil, errorf(CodeConfigValidateInvalidValue, "cache.minio.endpoint and cache.minio.bucket are required for the minio backend")
		}

		client, err := minio.New(endpoint, &minio.Options{
			Creds: credentials.NewStaticV4(
				v.GetString("cache.minio.access_key"),
				v.GetString("cache.minio.secret_key"),
				"",
			),
			Secure: v.GetBool("cache.minio.secure"),
		})
		if err != nil {
			return nil, wrapf(err, CodeCLIStoreFailure, "creating minio client")
		}

		return blobstore.NewTieredStore(local, miniostore.NewStore(client, bucket, prefix)), nil
	default:
		return nil, errorf(CodeConfigValidateInvalidValue, "cache.backend %q is not one of local, s3, minio", backend)
	}
}

func parseCompression(name string) (matio.Compression, error) {
	c, err := matio.ParseCompression(name)
	if err != nil {
		return matio.CompressionNone, wrapf(err, CodeConfigValidateInvalidValue, "cache.compression")
	}

	return c, nil
}
