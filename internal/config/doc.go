// Package config holds the gateway configuration model and its loaders.
//
// Configuration is assembled in layers, later layers winning:
//
//  1. DefaultConfig: the transport system services and route table.
//  2. An optional YAML file with ${VAR} and ${VAR:-default} substitution.
//  3. Variables from .env files (never overriding the real environment).
//  4. The process environment (PORT, USER_SERVICE_URL, RATE_LIMIT_MAX, ...).
//
// The route table is ordered. Rule order is precedence and is never
// rearranged by any loader.
package config
