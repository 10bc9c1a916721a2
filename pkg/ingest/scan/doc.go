// Package scan provides the scanner implementations used by scan
// processes to enumerate a source location, currently S3.
package scan
