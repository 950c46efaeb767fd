// Package types holds the interfaces and small value types shared between the
// rpc package and its internal implementations.
package types
