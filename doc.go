// Package ldapenv starts throwaway OpenLDAP servers for tests.
//
// Each server runs its own slapd process out of a private temporary
// directory, listens on freshly allocated loopback ports and is loaded with
// caller supplied LDIF before it accepts connections. Nothing is shared with a
// system-wide slapd installation apart from the binaries and schema files.
//
// # Basic Usage
//
//	srv, err := ldapenv.New("dc=example,dc=com").
//	    Add(1, `dn: dc=example,dc=com
//	objectClass: dcObject
//	objectClass: organization
//	dc: example
//	o: Example
//	`).
//	    Run(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer srv.Close()
//
//	conn, err := srv.Dial(ctx) // bound as srv.RootDN()
//
// # Layers
//
// LDIF is registered against a layer. Layer 0 is the cn=config database and
// holds schema and database definitions; New registers a default config
// there. Layers 1 and up hold directory data. Before slapd starts, layers are
// loaded with slapadd in ascending order and the payloads of a layer in the
// order they were added.
//
// Templates (AddTemplate, AddTemplateFile) may refer to the instance through
// placeholders such as @BASEDN@, @ROOTDN@, @ROOTPW@, @DATADIR@ and
// @SCHEMADIR@. Add and AddFile load their input verbatim.
//
// # Parallel Testing
//
// Servers are independent and may be started from parallel tests. Ports are
// reserved in-process and with lock files shared by every test binary on the
// host; when slapd still loses a port race it is restarted on new ports.
package ldapenv
