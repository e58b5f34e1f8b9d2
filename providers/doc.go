// Package providers holds the HTTP client shared by the built-in vendor
// adapters and the helpers they use to turn vendor billing payloads into
// core.UsageEntry values. Each vendor lives in its own subpackage.
package providers
