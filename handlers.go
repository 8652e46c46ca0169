package main

import (
	"encoding/json"
	"net/http"
)

func status(s *Service) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(writer).Encode(s.Status())
	}
}

func history(s *Service) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		entries, err := s.List(request.Context())
		if err != nil {
			http.Error(writer, err.Error(), http.StatusInternalServerError)

			return
		}

		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(writer).Encode(entries)
	}
}
