// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the secup CLI command.
package cmd
