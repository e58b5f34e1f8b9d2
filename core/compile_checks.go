package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CostService     = (*Service)(nil)
	_ CredentialCodec = JSONCredentialCodec{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
