/* Copyright 2025 Garahe Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:build windows

package dirs

import (
	"path/filepath"
)

var (
	envConfigHome = "APPDATA"
	envDataHome   = "LOCALAPPDATA"
	envCacheHome  = "LOCALAPPDATA"
)

func initDirs() {
	Home = getHomeDir()
	ConfigHome = readPath(envConfigHome, getAppData(Home))
	DataHome = readPath(envDataHome, getLocalAppData(Home))
	CacheHome = readPath(envCacheHome, getLocalAppData(Home))
}

func getAppData(homeDir string) string {
	return filepath.Join(homeDir, "AppData", "Roaming")
}

func getLocalAppData(homeDir string) string {
	return filepath.Join(homeDir, "AppData", "Local")
}
