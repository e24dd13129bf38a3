// Package protocol implements the synchronization protocol spoken between
// clients and the server.
//
// Every message is an XDR encoded Request or Response sealed in an
// envelope.Encrypted value. Transports carry the sealed bytes unchanged:
// TCP wraps each one in a record-marking frame (see ReadFrame), WebSocket
// sends each one as a binary message.
package protocol

import (
	"fmt"
	"time"
)

// RequestKind identifies a client request.
type RequestKind uint32

const (
	// RequestGetModifiedDate asks for the server's last-modified timestamp.
	RequestGetModifiedDate RequestKind = iota + 1

	// RequestDownloadDatabase asks for the full serialized document.
	RequestDownloadDatabase

	// RequestUpdateDatabase replaces the server's document.
	RequestUpdateDatabase
)

func (k RequestKind) String() string {
	switch k {
	case RequestGetModifiedDate:
		return "GetModifiedDate"
	case RequestDownloadDatabase:
		return "DownloadDatabase"
	case RequestUpdateDatabase:
		return "UpdateDatabase"
	default:
		return fmt.Sprintf("RequestKind(%d)", uint32(k))
	}
}

// ResponseKind identifies a server response.
type ResponseKind uint32

const (
	ResponseModifiedDate ResponseKind = iota + 1
	ResponseDatabase
	ResponseDatabaseUpdated
	ResponseInvalidPassword
	ResponseInvalidDatabaseBinary

	// ResponseDatabaseChanged is pushed without a request to observers of a
	// persistent connection after another client's update was accepted.
	ResponseDatabaseChanged
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseModifiedDate:
		return "ModifiedDate"
	case ResponseDatabase:
		return "Database"
	case ResponseDatabaseUpdated:
		return "DatabaseUpdated"
	case ResponseInvalidPassword:
		return "InvalidPassword"
	case ResponseInvalidDatabaseBinary:
		return "InvalidDatabaseBinary"
	case ResponseDatabaseChanged:
		return "DatabaseChanged"
	default:
		return fmt.Sprintf("ResponseKind(%d)", uint32(k))
	}
}

// Request is a client message. Database and LastModified are only
// meaningful for RequestUpdateDatabase.
//
// Timestamps travel as Unix nanoseconds so the minimum document timestamp
// survives the round trip.
type Request struct {
	Kind         RequestKind
	Database     []byte
	LastModified int64
}

// Response is a server message. Database is set for ResponseDatabase,
// LastModified for ResponseModifiedDate, ResponseDatabase and
// ResponseDatabaseChanged.
type Response struct {
	Kind         ResponseKind
	Database     []byte
	LastModified int64
}

func GetModifiedDate() Request  { return Request{Kind: RequestGetModifiedDate} }
func DownloadDatabase() Request { return Request{Kind: RequestDownloadDatabase} }

// UpdateDatabase builds an upload of a serialized document.
func UpdateDatabase(data []byte, lastModified time.Time) Request {
	return Request{Kind: RequestUpdateDatabase, Database: data, LastModified: lastModified.UnixNano()}
}

// Timestamp returns LastModified as a UTC time.
func (r Request) Timestamp() time.Time { return time.Unix(0, r.LastModified).UTC() }

// Validate rejects kinds this version does not know. It runs after a
// request is decrypted and decoded.
func (r *Request) Validate() error {
	switch r.Kind {
	case RequestGetModifiedDate, RequestDownloadDatabase:
		if len(r.Database) != 0 {
			return fmt.Errorf("%s carries a database", r.Kind)
		}
		return nil
	case RequestUpdateDatabase:
		return nil
	default:
		return fmt.Errorf("unknown request kind %d", uint32(r.Kind))
	}
}

func ModifiedDate(ts time.Time) Response {
	return Response{Kind: ResponseModifiedDate, LastModified: ts.UnixNano()}
}

func Database(data []byte, ts time.Time) Response {
	return Response{Kind: ResponseDatabase, Database: data, LastModified: ts.UnixNano()}
}

func DatabaseUpdated() Response       { return Response{Kind: ResponseDatabaseUpdated} }
func InvalidPassword() Response       { return Response{Kind: ResponseInvalidPassword} }
func InvalidDatabaseBinary() Response { return Response{Kind: ResponseInvalidDatabaseBinary} }

func DatabaseChanged(ts time.Time) Response {
	return Response{Kind: ResponseDatabaseChanged, LastModified: ts.UnixNano()}
}

// Timestamp returns LastModified as a UTC time.
func (r Response) Timestamp() time.Time { return time.Unix(0, r.LastModified).UTC() }

// Validate rejects kinds this version does not know.
func (r *Response) Validate() error {
	if r.Kind < ResponseModifiedDate || r.Kind > ResponseDatabaseChanged {
		return fmt.Errorf("unknown response kind %d", uint32(r.Kind))
	}
	return nil
}
