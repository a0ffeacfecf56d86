// Package urls holds documentation links printed in CLI help and
// troubleshooting output.
package urls
