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

// Package consts provides definitions of constants
package consts

var (
	// GaraheDirName is the name of the directory containing garahe files
	GaraheDirName = "garahe"
	// GaraheDBFileName is a filename for the Garahe SQLite database
	GaraheDBFileName = "garahe.db"
	// ConfigFilename is the name of the config file
	ConfigFilename = "garaherc"
	// EmergencyBackupFileName is the filename of the automatically maintained
	// single-slot snapshot in the data directory
	EmergencyBackupFileName = "emergency-backup.json"

	// SystemLastSyncAt is the timestamp of the server at the last sync
	SystemLastSyncAt = "last_sync_time"
	// SystemLastBackupAt is the timestamp at which the emergency backup was last written
	SystemLastBackupAt = "last_backup_at"
	// SystemSessionKey is the session key
	SystemSessionKey = "session_token"
	// SystemSessionKeyExpiry is the timestamp at which the session key will expire
	SystemSessionKeyExpiry = "session_token_expiry"
	// SystemDeviceID identifies this device to the server for idempotency scoping
	SystemDeviceID = "device_id"
)
