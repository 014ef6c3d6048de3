/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */
package misc

import (
	"os"
	"strings"
)

// GetSecret returns the value of the key environment variable, loaded from the environment or an env file.
func GetSecret(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
