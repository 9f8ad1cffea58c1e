// Package ecschema provides the in-memory schema graph consumed by the
// mapping engine, and a YAML loader that produces it.
//
// # Key capabilities
//
//   - Entity, struct, mixin and relationship classes with multiple inheritance
//   - Primitive, struct, array and navigation properties
//   - Mapping custom attributes (ClassMap, ShareColumns, PropertyMap, ...)
//   - Deterministic topological class order (bases first, declaration order ties)
//
// # Schema Overview
//
// A schema file has the following structure:
//
//	schema: TestSchema
//	alias: ts
//	classes:
//	  - name: Parent
//	    modifier: abstract
//	    classMap:
//	      strategy: TablePerHierarchy
//	    shareColumns:
//	      sharedColumnCount: 5
//	      applyToSubclassesOnly: true
//	    dbIndexes:
//	      - name: ix_parent_code
//	        isUnique: true
//	        properties: [Code]
//	        where: IndexedColumnsAreNotNull
//	    properties:
//	      - name: Code
//	        type: string
//	        propertyMap:
//	          collation: NoCase
//	      - name: Location
//	        type: Address        # struct class
//	      - name: Tags
//	        type: string
//	        array: true
//	  - name: Child
//	    baseClasses: [Parent]
//	    properties:
//	      - name: Owner
//	        navigation:
//	          relationship: ParentOwnsChild
//	          direction: backward
//	  - name: ParentOwnsChild
//	    kind: relationship
//	    relationship:
//	      strength: embedding
//	      direction: forward
//	      source: {multiplicity: "0..1", classes: [Parent], polymorphic: true}
//	      target: {multiplicity: "0..*", classes: [Child], polymorphic: true}
//	      foreignKeyConstraint:
//	        onDeleteAction: Cascade
//
// Class references are "Schema:Name", "alias:Name" or a bare name in the
// declaring schema.
package ecschema
