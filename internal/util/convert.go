// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the loomchat client.
package util

import "strconv"

// IntToString converts an int to a string without fmt.
func IntToString(i int) string {
	return strconv.Itoa(i)
}

// Int64ToString converts an int64 to a string without fmt.
func Int64ToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

// FloatToString converts a float64 to a string with one decimal place,
// the precision used for tokens-per-second display.
func FloatToString(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
