package slack

import "github.com/Strob0t/opsboard/internal/port/oauthprovider"

func init() {
	oauthprovider.Register(providerName, func(opts oauthprovider.Options) (oauthprovider.Provider, error) {
		return NewProvider(opts), nil
	})
}
