package relaygate

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"

	"github.com/spf13/viper"
)

// Lookup resolves a host variable name to its value.
type Lookup interface {
	LookupHost(key string) (string, bool)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(key string) (string, bool)

func (f LookupFunc) LookupHost(key string) (string, bool) { return f(key) }

// EnvLookup reads host variables from the process environment.
var EnvLookup Lookup = LookupFunc(os.LookupEnv)

// MapLookup serves host variables from a fixed map.
type MapLookup map[string]string

func (m MapLookup) LookupHost(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Chain returns the first non-empty value found across lookups, in order.
func Chain(lookups ...Lookup) Lookup {
	return LookupFunc(func(key string) (string, bool) {
		for _, l := range lookups {
			if l == nil {
				continue
			}
			if v, ok := l.LookupHost(key); ok && v != "" {
				return v, true
			}
		}
		return "", false
	})
}

// DotenvLookup loads KEY=value pairs from a .env file. Keys are matched
// case-insensitively. A missing file yields an error wrapping fs.ErrNotExist.
func DotenvLookup(path string) (Lookup, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dotenv lookup: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("dotenv lookup: read %s: %w", path, err)
	}

	return LookupFunc(func(key string) (string, bool) {
		if !v.IsSet(key) {
			return "", false
		}
		return v.GetString(key), true
	}), nil
}

// HostLookup builds the lookup used for target resolution: the process
// environment first, then the optional .env file. An absent .env file is not
// an error.
func HostLookup(envFile string) (Lookup, error) {
	if envFile == "" {
		return EnvLookup, nil
	}

	file, err := DotenvLookup(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return EnvLookup, nil
		}
		return nil, err
	}

	return Chain(EnvLookup, file), nil
}

// ResolveTarget turns a descriptor's host variable and base path into the
// absolute URL requests for that service are sent to.
func ResolveTarget(desc ServiceDescriptor, lookup Lookup) (url.URL, error) {
	hostVar := desc.TargetService.HostVar

	host, ok := lookup.LookupHost(hostVar)
	if !ok || host == "" {
		return url.URL{}, &ResolutionError{Service: desc.ID, HostVar: hostVar, Err: ErrMissingHostVariable}
	}

	invalid := func(err error) error {
		return &ResolutionError{
			Service: desc.ID,
			HostVar: hostVar,
			Err:     fmt.Errorf("%w: %v", ErrInvalidTarget, err),
		}
	}

	base, err := url.Parse(host)
	if err != nil {
		return url.URL{}, invalid(err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return url.URL{}, invalid(fmt.Errorf("host %q must use http or https", host))
	}
	if base.Host == "" {
		return url.URL{}, invalid(fmt.Errorf("host %q has no host component", host))
	}

	ref, err := url.Parse(desc.TargetService.BasePath)
	if err != nil {
		return url.URL{}, invalid(err)
	}

	target := base.ResolveReference(ref)
	target.Fragment = ""
	target.RawFragment = ""

	return *target, nil
}
