// Package native decodes the ClickHouse Native format.
//
// A stream is one or more blocks:
//
//	block    := columns:VarUInt rows:VarUInt
//	            (name:LPString type:LPString){columns}
//	            data{columns}
//	LPString := len:u8 bytes[len]
//	data     := value(type){rows}
//
// Values are stored column after column, little-endian for fixed-width
// types. Every block repeats the names and types; only the first block's
// copy is used. ReadAll materializes the whole stream, and ReadFolder reads
// the columns.txt/count.txt/data.bin directory layout.
package native
