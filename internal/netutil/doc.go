// Package netutil allocates listening ports for slapd instances.
//
// PortRegistry asks the kernel for ephemeral ports, records every reserved
// port in an in-process set, and additionally holds an exclusive file lock per
// port so that separate test binaries sharing a lock directory never hand out
// the same port at the same time. Allocation is best effort: the kernel can
// still give a released port to an unrelated process before slapd binds it,
// which the supervisor handles by retrying with fresh ports.
package netutil
