// Package catalog validates command arguments against a CUE schema file.
//
// A catalog declares one schema per command under the top-level commands
// field:
//
//	commands: {
//		recordSale: close({
//			amount:    int & >0
//			currency?: "EUR" | "USD"
//		})
//		voidSale: {saleId: string}
//	}
//
// Validate unifies the JSON form of the args with the schema and requires
// the result to be concrete, so missing required fields are reported too.
// The catalog is consulted when commands are enqueued from the CLI; the
// queue and the synchronizer never read it.
package catalog
