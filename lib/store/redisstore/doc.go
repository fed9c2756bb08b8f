// Package redisstore implements store.Source and store.Destination on top of
// go-redis.
//
// Sources are standalone servers (a cluster is migrated by passing every master
// as a separate source). The destination may be a standalone server or a
// cluster; ResolveDestination detects clusters through INFO and switches to a
// cluster client, which routes each pipelined operation to the owning node.
//
// Server error replies are translated into *store.Error values: BUSYKEY becomes
// RetCKeyBusy, LOADING becomes RetCLoading, unknown commands become
// RetCUnsupportedOperation and everything else RetCInternalError.
package redisstore
