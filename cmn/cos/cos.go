// Package cos holds small, dependency-light helpers shared across the
// registry, the MCMP receiver, and the UI surface.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

// uuidABC avoids characters that read ambiguously in logs and status
// pages.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var sid *shortid.Shortid

func init() {
	sid = shortid.MustNew(1 /*worker*/, uuidABC, 773)
}

// GenUUID returns a short, human-readable id; the receiver uses it for
// the UI command-link nonce.
func GenUUID() string {
	return sid.MustGenerate()
}

// GenDomainUUID returns an RFC-4122 id for LB-group/domain correlation
// ids, preferring the canonical dashed form over GenUUID's compact one
// since these show up in logs next to other UUID-shaped identifiers.
func GenDomainUUID() string {
	return uuid.NewString()
}

// StringInSlice reports whether s is present in list.
func StringInSlice(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
