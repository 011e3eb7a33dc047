// Package nanolog is a nanosecond-scale structured logging library for
// latency-sensitive server code. The call site invoked from user code
// records a compact binary record — a stable message identifier plus the
// raw dynamic argument bytes — into a per-producer ring buffer and
// returns; all formatting, compression, and I/O happen on a background
// goroutine and in the offline decoder (see package decoder).
//
// Typical use:
//
//	rt, err := nanolog.Open("/var/log/myapp.nanolog")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Close()
//
//	site, err := rt.RegisterSite(nanolog.SeverityInfo, "main.go", 42, "request %s took %dms")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	producer, err := rt.Preallocate()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer producer.Close()
//	producer.Log(site, "GET /widgets", 12)
//
// RegisterSite should be called once per call site (typically cached in
// a package-level variable, the way a code generator would emit it);
// Preallocate should be called once per long-lived worker goroutine, the
// Go-idiomatic stand-in for the original's thread-local staging buffer.
package nanolog
