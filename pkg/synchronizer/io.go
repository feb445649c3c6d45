// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package synchronizer

import "os"

// readSource reads the current file_path contents for a create/modify
// event. Synchronizer itself never watches the filesystem — that is
// pkg/bridge/fswatcher's job — it only needs the bytes at the moment an
// event is processed.
func readSource(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
