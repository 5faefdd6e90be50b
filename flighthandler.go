package dtls

// getFlightGenerator resolves the message-building function for a flight,
// split by role since client and server emit different messages at the
// same step number (spec §4.4 per-flight message sets).
func getFlightGenerator(isClient bool, flight FlightVal) flightGenerator {
	if isClient {
		switch flight {
		case Flight1, Flight3:
			return clientFlight1Generate
		case Flight5:
			return clientFlight5Generate
		case Flight5b:
			return clientFlight5bGenerate
		case Flight6:
			return clientFlight6Generate
		}
		return nil
	}
	switch flight {
	case Flight0:
		return serverFlight0Generate
	case Flight1:
		return serverFlight1Generate
	case Flight4:
		return serverFlight4Generate
	case Flight4b:
		return serverFlight4bGenerate
	case Flight6:
		return serverFlight6Generate
	}
	return nil
}

// getFlightParser resolves the message-consuming function for a flight.
func getFlightParser(isClient bool, flight FlightVal) flightParser {
	if isClient {
		switch flight {
		case Flight1:
			return clientFlight1Parse
		case Flight3:
			return clientFlight3Parse
		case Flight5:
			return clientFlight5Parse
		case Flight5b:
			return clientFlight5bParse
		}
		return nil
	}
	switch flight {
	case Flight0:
		return serverFlight0Parse
	case Flight1:
		return serverFlight1Parse
	case Flight4, Flight4b:
		return serverFlight4Parse
	}
	return nil
}
