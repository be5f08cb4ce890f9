// syncctl - запуск глобальной синхронизации вручную
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/go-resty/resty/v2"
)

func main() {
	serverAddr := flag.String("a", "http://localhost:8080", "адрес сервиса dailyincome")
	flag.Parse()

	setreq := resty.New().R()
	setreq.Method = http.MethodPost
	setreq.URL = *serverAddr + "/api/internal/sync"
	setresp, err := setreq.Send()
	if err != nil {
		log.Fatal(err)
	}

	if setresp.StatusCode() != http.StatusOK {
		log.Fatalf("sync request status: %d", setresp.StatusCode())
	}
	fmt.Println(string(setresp.Body()))
}
