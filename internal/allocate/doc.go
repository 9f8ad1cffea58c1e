// Package allocate assigns physical tables and columns to resolved classes.
//
// # Key capabilities
//
//   - One table per OwnTable class, per TablePerHierarchy root and per
//     joined-table boundary; ExistingTable binds to a preexisting table
//   - Struct properties flatten to Outer_Inner columns, points expand to
//     _X/_Y/_Z columns, arrays are stored out of line
//   - Shared column pools (sc1..scN) for ShareColumns hierarchies
//   - Append-only extension of the prior layout across imports
//
// # Shared Columns
//
// A pool belongs to one physical table and grows lazily. A class takes the
// lowest slots not already holding a value in its own rows, so sibling
// classes reuse the same slots:
//
//	ts_Base: ECInstanceId | ECClassId | sc1 | sc2
//	Sub1.A   ->                         sc1
//	Sub3.B   ->                         sc1
//	Sub3.C   ->                               sc2
//
// Slots beyond SharedColumnCount are overflow; they are allocated anyway and
// reported as warnings. Constraint attributes on pooled properties are ignored.
//
// # Column Naming
//
// Classes sharing a table reuse a dedicated column with the same name and
// definition. A clash qualifies the name with the class name, then a number:
//
//	Price, Child2_Price, Child2_Price_2, ...
package allocate
