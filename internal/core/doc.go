// Package core provisions and supervises ephemeral slapd instances.
//
// Start runs the whole pipeline for one instance: it validates the Config,
// creates a workspace, prepares TLS material, renders and writes the LDIF
// payloads, loads them offline with slapadd, then spawns slapd and waits
// until it answers LDAP requests. The returned Server owns every resource
// acquired on the way and releases them in Close. When any step fails, Start
// releases what it acquired and returns a single typed error naming the
// failing stage.
package core
