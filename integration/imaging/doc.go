// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package imaging bridges paste views and the standard image types.
//
// Views produced here are uint8 HWC: grayscale images become 1-channel
// views, everything else 4-channel RGBA. The reverse direction accepts
// 1-, 3- and 4-channel uint8 views. Conversions copy pixel data; a view
// never aliases the image it came from.
package imaging
