// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"encoding/base64"
	"strconv"
)

// encodePageToken/decodePageToken opaquely carry the cursor (a start_ms
// boundary) across BrowseChildren calls. The encoding is base64 only to
// discourage callers from treating it as a meaningful sort key; it is not a
// security boundary.
func encodePageToken(afterMs int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(afterMs, 10)))
}

func decodePageToken(token string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}
