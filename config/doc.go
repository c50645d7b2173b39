// Package config loads vendor credentials, catalog location and logging settings
// from a TOML file and AIBRIDGE_* environment variables.
//
// Environment variables override the file. Nested keys use a double underscore:
// AIBRIDGE_VENDORS__OPENAI__API_KEY sets vendors.openai.api_key. A vendor may name
// an OS keyring service in api_key_keyring instead of storing the key in plain text;
// the secret is looked up with the vendor name as user.
package config
