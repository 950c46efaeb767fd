package main

import (
	"strings"

	rpc "github.com/RidgeA/bus-rpc"
)

const textService = "Text"

// registerText registers the demo Text service.
func registerText(s *rpc.Server) error {
	handlers := map[string]rpc.HandlerFunc{
		"upper": func(p []byte) ([]byte, error) { return []byte(strings.ToUpper(string(p))), nil },
		"lower": func(p []byte) ([]byte, error) { return []byte(strings.ToLower(string(p))), nil },
		"echo":  func(p []byte) ([]byte, error) { return p, nil },
	}

	for method, h := range handlers {
		if err := s.RegisterHandler(textService, method, h); err != nil {
			return err
		}
	}

	return nil
}
