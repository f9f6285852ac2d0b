// Package uplink provides a high-level Go module for uploading objects
// into the nimbusfs object storage service. It discovers the region serving
// a bucket, signs upload tokens from policies, and moves files over the
// service's form and resumable block protocols while steering around
// unhealthy endpoints.
//
// The module emphasizes developer experience through simple APIs while
// maintaining robustness through endpoint health tracking, resumable
// progress records, and configurable concurrency.
//
// Key features:
//   - Simple, zero-configuration usage with the credential chain
//   - Progressive enhancement through functional options
//   - Automatic switch to resumable block uploads for large files
//   - Crash-safe resume of interrupted uploads
//   - Endpoint failover with persistent health knowledge
//   - Concurrent batch uploads with per-job callbacks
//
// Example usage:
//
//	client, err := uplink.New(
//	    uplink.WithCredential(credential.New(accessKey, secretKey)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Upload a file
//	result, err := client.UploadFile(ctx, "my-bucket", "/local/file.txt",
//	    uplink.WithKey("path/file.txt"))
//	if err != nil {
//	    return err
//	}
package uplink
