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

package converter

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeText decodes raw bytes into a string, trying UTF-8 first, then
// Windows-1252, then ISO-8859-1, and finally UTF-8 with replacement runes.
// It returns the decoded text and the name of the encoding that applied.
func DecodeText(data []byte) (string, string) {
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}

	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
		return string(decoded), "cp1252"
	}

	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(decoded), "iso-8859-1"
	}

	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), "utf-8-replace"
}
